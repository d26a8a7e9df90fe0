package hardware

import (
	"runtime"
	"sync"

	"github.com/shirou/gopsutil/v3/cpu"
	"go.uber.org/zap"

	"github.com/lk2023060901/binn-go/pkg/log"
)

var (
	cpuNumOnce sync.Once
	cpuNum     int
)

// GetCPUNum 返回当前进程可用的 CPU 核数。
// 取 GOMAXPROCS 与主机逻辑核数中的较小值，容器环境下 GOMAXPROCS 通常已按配额调整。
func GetCPUNum() int {
	cpuNumOnce.Do(func() {
		cpuNum = runtime.GOMAXPROCS(0)
		logical, err := cpu.Counts(true)
		if err != nil {
			log.Warn("failed to get logical cpu count, fallback to GOMAXPROCS", zap.Error(err))
			return
		}
		if logical > 0 && logical < cpuNum {
			cpuNum = logical
		}
	})
	if cpuNum <= 0 {
		return 1
	}
	return cpuNum
}
