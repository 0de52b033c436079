// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — одно соединение и один канал на процесс
//   - topology.go   — объявление fanout exchange, очереди и binding
//   - publisher.go  — публикация текстовых сообщений
//   - consumer.go   — потребление с prefetch 1 и ручным ack
//
// Переподключения нет: разрыв соединения завершает процесс с ошибкой.
package mq
