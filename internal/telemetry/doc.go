// Package telemetry обеспечивает наблюдаемость fanoutctl.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики publisher'а и consumer'а
//
// Логи пишутся в stderr: stdout занят диалогом с пользователем.
// Метрики экспортируются на /metrics, если задан --metrics-addr.
package telemetry
