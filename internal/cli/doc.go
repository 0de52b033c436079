// Package cli реализует командную строку fanoutctl.
//
// # Обзор
//
// Одна cobra-команда разбирает аргументы, открывает одно соединение
// с RabbitMQ и запускает один из режимов:
//
//   - publisher — читает строки из stdin и публикует каждую в fanout exchange;
//     ввод "e" (в любом регистре) или конец ввода завершает цикл
//   - consumer — объявляет очередь, привязывает её к exchange и печатает
//     каждое полученное сообщение, подтверждая его (prefetch 1)
//
// # Коды выхода
//
//   - 0 — успешное завершение или --help
//   - 1 — ошибка аргументов (с usage) или ошибка брокера
//
// Аргументы проверяются до подключения: ни --help, ни ошибка
// аргументов не приводят к обращению к брокеру.
//
// # Ключевые компоненты
//
// ## Deps
//
// Внешние зависимости команды (Dialer, архив, метрики, потоки ввода-вывода).
// Тесты подставляют in-memory брокер из mqtest.
//
// ## Output
//
// Диалог с пользователем идёт в stdout, ошибки — в stderr.
package cli
