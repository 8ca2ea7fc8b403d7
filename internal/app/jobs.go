package app

import (
	"context"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shirou/gopsutil/cpu"
	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
	"go.uber.org/zap"

	"github.com/pond75jnu/svcmon/internal/domain"
	"github.com/pond75jnu/svcmon/internal/store"
	"github.com/pond75jnu/svcmon/pkg/metrics"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func (a *Application) initJob() {
	loc, _ := time.LoadLocation(a.appConfig.System.Location)
	a.sched = cron.New(cron.WithLocation(loc), cron.WithParser(cronParser))

	var err error
	_, err = a.sched.AddFunc("@every 30s", func() {
		go a.SchedSystemMonitorTask()
		go a.SchedProcessMonitorTask()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	_, err = a.sched.AddFunc("@daily", func() {
		a.SchedClearExpireData()
	})
	if err != nil {
		zap.S().Errorf("init job error %s", err.Error())
	}

	a.sched.Start()
}

// SchedSystemMonitorTask system monitor
func (a *Application) SchedSystemMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	cpuuse, err := cpu.Percent(0, false)
	if err == nil && len(cpuuse) > 0 {
		metrics.SetGauge("system_cpuuse", int64(cpuuse[0]*100))
	}

	meminfo, err := mem.VirtualMemory()
	if err == nil {
		metrics.SetGauge("system_memuse", int64(meminfo.Used/1024/1024))
	}
}

// SchedProcessMonitorTask app process monitor
func (a *Application) SchedProcessMonitorTask() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return
	}

	cpuuse, err := p.CPUPercent()
	if err == nil {
		metrics.SetGauge("svcmon_cpuuse", int64(cpuuse*100))
	}

	meminfo, err := p.MemoryInfo()
	if err == nil {
		metrics.SetGauge("svcmon_memuse", int64(meminfo.RSS/1024/1024))
	}
}

// SchedClearExpireData prunes old check rows per the retention setting and
// drops year-old operator logs.
func (a *Application) SchedClearExpireData() {
	defer func() {
		if err := recover(); err != nil {
			zap.S().Error(err)
		}
	}()

	idays := a.ConfigMgr().GetInt("monitor", "check_retention_days")
	if idays == 0 {
		idays = 90
	}

	st := store.NewStore(a.gormDB)
	pruned, err := st.PruneChecks(context.Background(),
		time.Now().UTC().Add(-time.Hour*24*time.Duration(idays)))
	if err != nil {
		zap.L().Error("check prune failed", zap.Error(err))
	} else if pruned > 0 {
		zap.L().Info("pruned expired checks", zap.Int64("rows", pruned), zap.Int("retention_days", idays))
	}

	a.gormDB.
		Where("opt_time < ? ", time.Now().
			Add(-time.Hour*24*365)).Delete(domain.SysOprLog{})
}
