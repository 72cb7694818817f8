// Command chronosd is a minimal example driver: it sizes a global
// scheduling domain to the host's real CPU quota, registers the
// built-in policies, runs a handful of tasks through BEGIN and a few
// scheduling passes, and prints the resulting counters.
package main

import (
	"os"
	"runtime"

	_ "go.uber.org/automaxprocs"

	"github.com/vtrts/chronos/chronoslog"
	"github.com/vtrts/chronos/chronosstats"
	"github.com/vtrts/chronos/chronostime"
	"github.com/vtrts/chronos/sched"
	"github.com/vtrts/chronos/segment"
	"github.com/vtrts/chronos/task"
)

func main() {
	logger := chronoslog.NewDefaultLogger(os.Stdout, chronoslog.LevelInfo)
	cpus := runtime.GOMAXPROCS(0)

	registry := sched.NewRegistry(sched.WithLogger(logger))
	domain := sched.NewDomain(
		registry.GetGlobal(task.PolicyGRMA),
		sched.STW(),
		cpus,
		sched.WithLogger(logger),
		sched.WithPriority(1),
	)

	mgr := segment.NewManager(
		segment.WithDomain(domain),
		segment.WithLogger(logger),
	)

	stats := chronosstats.New("chronosd-example", cpus)

	periods := []chronostime.Timespec{
		{Sec: 1},
		{Sec: 2},
		{Nsec: 500_000_000},
	}
	now := chronostime.Now()
	for i, period := range periods {
		t := task.New(1000 + i)
		t.Seq = uint64(i)
		req := segment.BeginRequest{
			Priority: 10 - i,
			ExecTime: chronostime.Timespec{Nsec: 100_000_000},
			MaxUtil:  int64(i + 1),
			Deadline: chronostime.Add(now, period),
			Period:   period,
			Global:   true,
		}
		if err := mgr.Begin(t, req); err != nil {
			logger.Error("begin failed", "pid", t.PID, "err", err)
			continue
		}
		stats.CPUs[0].SegBeginCount.Add(1)
	}

	for cpu := 0; cpu < cpus; cpu++ {
		if got := domain.Schedule(cpu, sched.BlockNone); got != nil {
			logger.Info("scheduled", "cpu", cpu, "pid", got.PID)
			stats.CPUs[cpu].SchedCountGlobal.Add(1)
		}
	}

	if err := stats.Dump(os.Stdout); err != nil {
		logger.Error("dump failed", "err", err)
		os.Exit(1)
	}
}
