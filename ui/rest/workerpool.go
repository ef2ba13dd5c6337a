package rest

import (
	"github.com/AzielCF/az-crm/pkg/msgworker"
	"github.com/AzielCF/az-crm/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

type WorkerPool struct {
	Pools []*msgworker.KeyedPool
}

func InitRestWorkerPool(app fiber.Router, pools ...*msgworker.KeyedPool) WorkerPool {
	rest := WorkerPool{Pools: pools}
	app.Get("/worker-pools/stats", rest.GetStats)
	return rest
}

// GetStats returns real-time statistics of the inbound and assignment pools
func (handler *WorkerPool) GetStats(c *fiber.Ctx) error {
	stats := make([]msgworker.PoolStats, 0, len(handler.Pools))
	for _, pool := range handler.Pools {
		if pool == nil {
			continue
		}
		stats = append(stats, pool.GetStats())
	}
	return utils.Success(c, "Worker pool stats retrieved", stats)
}
