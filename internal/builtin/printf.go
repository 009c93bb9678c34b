package builtin

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// builtinPrintf implements the commonly used subset of POSIX printf:
// %s, %d, %i, %x, %o, %c, %%, and the backslash escapes \n \t \\ \" in
// the format string. When there are more arguments than format
// conversions, the format is reapplied to the remaining arguments,
// matching bash's printf.
func (r *Registry) builtinPrintf(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) (int, error) {
	if len(args) < 2 {
		fmt.Fprintln(stderr, "printf: usage: printf format [arguments]")
		return 2, nil
	}
	format := args[1]
	values := args[2:]

	if len(values) == 0 {
		out, _, err := renderPrintf(format, nil)
		if err != nil {
			fmt.Fprintf(stderr, "printf: %v\n", err)
			return 1, nil
		}
		fmt.Fprint(stdout, out)
		return 0, nil
	}

	for len(values) > 0 {
		out, consumed, err := renderPrintf(format, values)
		if err != nil {
			fmt.Fprintf(stderr, "printf: %v\n", err)
			return 1, nil
		}
		fmt.Fprint(stdout, out)
		if consumed == 0 {
			break
		}
		values = values[consumed:]
	}
	return 0, nil
}

// renderPrintf expands one pass of format against values, returning the
// rendered text and how many values it consumed.
func renderPrintf(format string, values []string) (string, int, error) {
	var out strings.Builder
	consumed := 0
	next := func() string {
		if consumed < len(values) {
			v := values[consumed]
			consumed++
			return v
		}
		return ""
	}

	runes := []rune(format)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == '\\' && i+1 < len(runes):
			i++
			out.WriteRune(unescapeChar(runes[i]))
		case c == '%' && i+1 < len(runes):
			i++
			verb := runes[i]
			switch verb {
			case '%':
				out.WriteByte('%')
			case 's':
				out.WriteString(next())
			case 'd', 'i':
				n, err := strconv.ParseInt(strings.TrimSpace(next()), 0, 64)
				if err != nil {
					return "", consumed, fmt.Errorf("%w", err)
				}
				fmt.Fprintf(&out, "%d", n)
			case 'x':
				n, err := strconv.ParseInt(strings.TrimSpace(next()), 0, 64)
				if err != nil {
					return "", consumed, fmt.Errorf("%w", err)
				}
				fmt.Fprintf(&out, "%x", n)
			case 'o':
				n, err := strconv.ParseInt(strings.TrimSpace(next()), 0, 64)
				if err != nil {
					return "", consumed, fmt.Errorf("%w", err)
				}
				fmt.Fprintf(&out, "%o", n)
			case 'c':
				v := next()
				if len(v) > 0 {
					out.WriteByte(v[0])
				}
			default:
				out.WriteByte('%')
				out.WriteRune(verb)
			}
		default:
			out.WriteRune(c)
		}
	}
	return out.String(), consumed, nil
}

func unescapeChar(c rune) rune {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '\\':
		return '\\'
	case '"':
		return '"'
	default:
		return c
	}
}
