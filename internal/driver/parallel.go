package driver

import (
	"context"
	"io/fs"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// ListDumps возвращает отсортированный список всех *.graft файлов в директории
func ListDumps(dir string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, DumpExt) {
			files = append(files, path)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}

	// Сортируем для детерминированного порядка
	sort.Strings(files)
	return files, nil
}

// CheckMany проверяет дампы параллельно. Каждый дамп независим: свой
// FileSet, свой bag и свой процесс инструмента, поэтому воркеры не
// делят ничего, кроме кеша раундов (он потокобезопасен).
//
// A custom opts.Collector is shared across workers and must be safe
// for concurrent use; the default (spawn per dump) always is.
func CheckMany(ctx context.Context, paths []string, opts CheckOptions, jobs int) ([]*Result, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	// Настраиваем параллелизм
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	// Результаты (индексы уникальны для каждой горутины, мьютекс не нужен)
	results := make([]*Result, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(paths)))

	for i, path := range paths {
		g.Go(func(i int, path string) func() error {
			return func() error {
				// Проверка отмены
				select {
				case <-gctx.Done():
					return gctx.Err()
				default:
				}

				res, err := Check(gctx, path, opts)
				if err != nil {
					return err
				}

				// Сохраняем результат (мьютекс не нужен — индекс i уникален)
				results[i] = res
				return nil
			}
		}(i, path))
	}

	// Ждём завершения всех горутин
	if err := g.Wait(); err != nil {
		return results, err
	}

	return results, nil
}

// CheckDir находит все дампы в директории и проверяет их параллельно.
func CheckDir(ctx context.Context, dir string, opts CheckOptions, jobs int) ([]*Result, error) {
	paths, err := ListDumps(dir)
	if err != nil {
		return nil, err
	}
	return CheckMany(ctx, paths, opts, jobs)
}
