package driver

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"elang/internal/ast"
	"elang/internal/diag"
)

// DecodeResult содержит результат декодирования одного файла
type DecodeResult struct {
	Path    string
	Module  *ast.Module // nil, если файл не декодировался
	Bag     *diag.Bag
	Elapsed time.Duration
}

// Name returns the declared module name, or the file stem when decoding failed.
func (r *DecodeResult) Name() string {
	if r.Module != nil {
		return r.Module.Name
	}
	return strings.TrimSuffix(filepath.Base(r.Path), ast.Ext)
}

// DecodeFiles decodes files in parallel. Per-file failures land in the
// result's bag; the returned error is set only on cancellation.
func DecodeFiles(ctx context.Context, files []string, maxDiagnostics, jobs int, obs Observer) ([]DecodeResult, error) {
	results := make([]DecodeResult, len(files))
	if len(files) == 0 {
		return results, nil
	}

	// Настраиваем параллелизм
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	var mu sync.Mutex
	notify := func(ev ModuleEvent) {
		if obs == nil {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		obs(ev)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(files)))

	for i, path := range files {
		g.Go(func() error {
			// Проверка отмены
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			notify(ModuleEvent{File: path, Phase: PhaseDecode, Status: PhaseStart})
			start := time.Now()
			bag := diag.NewBag(maxDiagnostics)
			res := DecodeResult{Path: path, Bag: bag}

			m, err := ast.ReadFile(path)
			res.Elapsed = time.Since(start)
			if err != nil {
				res.Module = nil
				bag.AddError(res.Name(), err)
				notify(ModuleEvent{Module: res.Name(), File: path, Phase: PhaseDecode, Status: PhaseFailed, Err: err, Elapsed: res.Elapsed})
			} else {
				res.Module = m
				notify(ModuleEvent{Module: m.Name, File: path, Phase: PhaseDecode, Status: PhaseEnd, Elapsed: res.Elapsed})
			}

			// индекс i уникален для горутины, мьютекс не нужен
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
