// Package fuzztests houses Go fuzz harnesses for the two untrusted
// boundaries of a check: elaboration dump bytes, which come from host
// frontends, and diagnostic positions, which come from the external
// tool. Neither may panic the checker, whatever it contains.
//
// Назначение: прогонять произвольные байты через загрузку дампа и
// элаборацию, а произвольные позиции инструмента — через ремаппер.
//
// Не делает: генерацию корпусов, запись файлов, запуск инструмента.
//
// Зависимости: internal/source, internal/driver, internal/remap,
// internal/lsp, internal/shim, internal/diag, internal/elab.
package fuzztests
