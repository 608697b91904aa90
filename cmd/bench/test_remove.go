package main

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/fulldump/liverepo/service"
)

func TestRemove(c Config) {

	stop := CreateServer(&c)
	defer stop()

	client := NewClient()

	fmt.Println("Preload users...")
	ids := make([]uuid.UUID, c.N)
	next := int64(-1)
	Parallel(c.Workers, func() {
		for {
			i := atomic.AddInt64(&next, 1)
			if i >= c.N {
				return
			}
			user := service.RandomUser()
			ids[i] = user.Id
			err := AddUser(client, c.Base, user)
			if err != nil {
				color.Red("preload: %s", err)
			}
		}
	})

	var removed, failed int64
	next = -1

	t0 := time.Now()
	Parallel(c.Workers, func() {
		for {
			i := atomic.AddInt64(&next, 1)
			if i >= c.N {
				return
			}
			err := DeleteUser(client, c.Base, ids[i])
			if err != nil {
				atomic.AddInt64(&failed, 1)
				continue
			}
			atomic.AddInt64(&removed, 1)
		}
	})

	took := time.Since(t0)
	fmt.Println("removed:", removed)
	fmt.Println("took:", took)
	fmt.Printf("Throughput: %.2f users/sec\n", float64(removed)/took.Seconds())
	if failed > 0 {
		color.Red("failed: %d", failed)
	}
}
