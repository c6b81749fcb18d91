// Copyright 2026 The WOF-Alloc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Soak test for the pool allocator. Runs a random alloc/realloc/free mix for
// a while, verifying the pool structure as it goes, and reports throughput.

package main

import (
	"flag"
	"log"
	"math/rand"
	"time"

	"github.com/cznic/mathutil"
	"github.com/eapache/wof-alloc/pool"
)

var (
	nOps   = flag.Int("n", 1e6, "operations to perform")
	lim    = flag.Int("lim", 1<<16, "allocation size limit")
	bsize  = flag.Int("bsize", pool.DefaultBlockSize, "pool block size")
	vevery = flag.Int("vevery", 1e4, "verify every N operations")
	fevery = flag.Int("fevery", 1e5, "free all every N operations")
	seed   = flag.Int64("seed", 42, "rng seed")
)

func main() {
	flag.Parse()

	p, err := pool.New(&pool.Options{BlockSize: *bsize})
	if err != nil {
		log.Fatal(err)
	}

	var (
		rng   = rand.New(rand.NewSource(*seed))
		live  [][]byte
		peak  int
		stats pool.Stats
		secs  = time.Tick(time.Second)
		t0    = time.Now()
	)

	verify := func() {
		if err := p.Verify(func(e error) bool {
			log.Print(e)
			return true
		}, &stats); err != nil {
			log.Fatal(err)
		}
	}

	for i := 0; i < *nOps; i++ {
		switch op := rng.Intn(4); {
		case op == 0 && len(live) != 0:
			j := rng.Intn(len(live))
			if err := p.FreeBytes(live[j]); err != nil {
				log.Fatal(i, err)
			}

			live[j] = live[len(live)-1]
			live = live[:len(live)-1]
		case op == 1 && len(live) != 0:
			j := rng.Intn(len(live))
			b, err := p.ReallocBytes(live[j], rng.Intn(*lim))
			if err != nil {
				log.Fatal(i, err)
			}

			live[j] = b
		default:
			b, err := p.AllocBytes(rng.Intn(*lim))
			if err != nil {
				log.Fatal(i, err)
			}

			live = append(live, b)
			peak = mathutil.Max(peak, len(live))
		}

		if *vevery != 0 && i%*vevery == 0 {
			verify()
		}

		if *fevery != 0 && i%*fevery == *fevery-1 {
			if err := p.FreeAll(); err != nil {
				log.Fatal(i, err)
			}

			live = live[:0]
			if err := p.GC(); err != nil {
				log.Fatal(i, err)
			}
		}

		select {
		case <-secs:
			log.Printf("%d ops, %d live (peak %d), %d blocks (%d jumbo), %d bytes free, largest %d",
				i, len(live), peak, stats.Blocks, stats.JumboBlocks,
				stats.FreeBytes, stats.MaxFree)
		default:
		}
	}

	if err := p.FreeAll(); err != nil {
		log.Fatal(err)
	}

	if err := p.GC(); err != nil {
		log.Fatal(err)
	}

	verify()
	if stats.Blocks != 0 {
		log.Fatalf("%d blocks survived a full reset", stats.Blocks)
	}

	if err := p.Close(); err != nil {
		log.Fatal(err)
	}

	log.Printf("ok, %d ops in %v", *nOps, time.Since(t0))
}
