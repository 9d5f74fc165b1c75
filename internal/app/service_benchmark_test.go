package app

import (
	"testing"

	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart"
	"github.com/softtagz-sys/medikits-flowchart/internal/flowchart/cache"
	"github.com/softtagz-sys/medikits-flowchart/internal/snapshot"
	"github.com/softtagz-sys/medikits-flowchart/internal/traversal"
)

var benchActions = []traversal.Action{traversal.Continue(), traversal.Choose(0)}

func benchmarkService() *Service {
	return NewService(traversal.NewEngine(), cache.NewInMemory[*flowchart.Graph](1024))
}

func loadAndWalk(svc *Service) error {
	g, err := svc.Load([]byte(nosebleedYAML), snapshot.FormatYAML)
	if err != nil {
		return err
	}
	_, err = svc.Walk(g, benchActions, nil)
	return err
}

func BenchmarkServiceWalkCached(b *testing.B) {
	svc := benchmarkService()

	if err := loadAndWalk(svc); err != nil {
		b.Fatalf("warmup walk failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := loadAndWalk(svc); err != nil {
			b.Fatalf("walk failed: %v", err)
		}
	}
}

func BenchmarkServiceWalkCachedParallel(b *testing.B) {
	svc := benchmarkService()

	if err := loadAndWalk(svc); err != nil {
		b.Fatalf("warmup walk failed: %v", err)
	}

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if err := loadAndWalk(svc); err != nil {
				b.Errorf("walk failed: %v", err)
				return
			}
		}
	})
}

func BenchmarkServiceLayout(b *testing.B) {
	svc := benchmarkService()
	g, err := svc.Load([]byte(nosebleedYAML), snapshot.FormatYAML)
	if err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = svc.Layout(g)
	}
}
