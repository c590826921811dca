package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
)

const (
	colorRed   = "\x1b[31m"
	colorGreen = "\x1b[32m"
	colorReset = "\x1b[0m"
)

// Printer 渲染 Result。终端上成功消息为绿色、错误消息为红色。
type Printer struct {
	Stdout io.Writer
	Stderr io.Writer
	Color  bool
}

// NewPrinter 输出到标准输出与标准错误，stdout 为终端时启用颜色
func NewPrinter() *Printer {
	fd := os.Stdout.Fd()
	return &Printer{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Color:  isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
}

// Print 输出结果并返回进程退出码
func (p *Printer) Print(r Result) int {
	switch {
	case r.ShowHelp:
		if r.Message != "" {
			p.line(p.Stderr, colorRed, r.Message)
		}
		fmt.Fprintln(p.Stdout, Usage())
	case r.ShowValue:
		fmt.Fprintln(p.Stdout, r.Value)
	case r.Success():
		p.line(p.Stdout, colorGreen, r.Message)
	default:
		p.line(p.Stderr, colorRed, r.Message)
		if r.Cause != "" {
			fmt.Fprintln(p.Stderr, r.Cause)
		}
	}
	return r.ExitCode()
}

func (p *Printer) line(w io.Writer, color, msg string) {
	if p.Color {
		fmt.Fprintln(w, color+msg+colorReset)
		return
	}
	fmt.Fprintln(w, msg)
}
