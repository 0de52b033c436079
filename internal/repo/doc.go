// Package repo хранит архив полученных сообщений в PostgreSQL.
//
// Архив опционален: включается, когда задан ARCHIVE_DB_URL или --archive-dsn.
package repo
