package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shaiso/fanoutctl/internal/mq"
)

const (
	publishPrompt = "Enter message to publish (or 'e' to exit): "
	publishedText = "Message published successfully."
	exitCommand   = "e"
)

// textPublisher — часть mq.Publisher, нужная циклу.
type textPublisher interface {
	PublishText(ctx context.Context, exchange mq.Exchange, text string) error
}

// runPublisher читает строки и публикует каждую отдельным сообщением.
// Завершается на "e" (без учёта регистра), конце ввода или отмене ctx.
func runPublisher(ctx context.Context, in io.Reader, out *Output, pub textPublisher, exchange mq.Exchange) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines, errc := readLines(ctx, in)

	for {
		out.Prompt(publishPrompt)

		var line string
		select {
		case <-ctx.Done():
			out.Println("")
			return nil
		case l, ok := <-lines:
			if !ok {
				out.Println("")
				if err := <-errc; err != nil {
					return fmt.Errorf("read input: %w", err)
				}
				return nil
			}
			line = l
		}

		if strings.EqualFold(line, exitCommand) {
			return nil
		}

		if err := pub.PublishText(ctx, exchange, line); err != nil {
			return err
		}
		out.Println(publishedText)
	}
}

// readLines читает строки в отдельной горутине, чтобы цикл мог
// реагировать на отмену ctx во время ожидания ввода.
// Длина строки не ограничена; последняя строка без перевода строки тоже отдаётся.
func readLines(ctx context.Context, in io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(lines)

		r := bufio.NewReader(in)
		for {
			line, err := r.ReadString('\n')
			if line != "" {
				line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
				select {
				case lines <- line:
				case <-ctx.Done():
					errc <- nil
					return
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					err = nil
				}
				errc <- err
				return
			}
		}
	}()

	return lines, errc
}
