package domain

var Tables = []interface{}{
	// System
	&SysConfig{},
	&SysOpr{},
	&SysOprLog{},
	// Topology
	&NetworkGroup{},
	&SiteDomain{},
	&Endpoint{},
	// Monitoring
	&Check{},
	&Rollup{},
	&ConfigRevision{},
	&Notification{},
}
