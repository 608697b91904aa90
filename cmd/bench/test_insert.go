package main

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/fatih/color"

	"github.com/fulldump/liverepo/service"
)

func TestInsert(c Config) {

	stop := CreateServer(&c)
	defer stop()

	client := NewClient()
	items := c.N
	var failed int64

	t0 := time.Now()
	Parallel(c.Workers, func() {
		for atomic.AddInt64(&items, -1) >= 0 {
			err := AddUser(client, c.Base, service.RandomUser())
			if err != nil {
				atomic.AddInt64(&failed, 1)
			}
		}
	})

	took := time.Since(t0)
	fmt.Println("sent:", c.N)
	fmt.Println("took:", took)
	fmt.Printf("Throughput: %.2f users/sec\n", float64(c.N)/took.Seconds())
	if failed > 0 {
		color.Red("failed: %d", failed)
	}
}
