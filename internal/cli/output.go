package cli

import (
	"fmt"
	"io"
	"sync"
)

// Output управляет выводом CLI. Безопасен для нескольких горутин.
type Output struct {
	mu   sync.Mutex
	w    io.Writer // stdout для диалога
	errW io.Writer // stderr для ошибок
}

// NewOutput создаёт Output.
func NewOutput(w, errW io.Writer) *Output {
	return &Output{w: w, errW: errW}
}

// Prompt выводит приглашение без перевода строки.
func (o *Output) Prompt(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprint(o.w, msg)
}

// Println выводит строку в stdout.
func (o *Output) Println(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.w, msg)
}

// Error выводит сообщение об ошибке в stderr.
func (o *Output) Error(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprintln(o.errW, "Error: "+msg)
}

// Usage выводит текст usage в stderr.
func (o *Output) Usage(usage string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fmt.Fprint(o.errW, usage)
}
