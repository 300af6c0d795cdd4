package expr

import "fmt"

// StripComments removes every /* */ span from src.
//
// Comments do not nest: a second "/*" before the pending "*/", a "*/"
// with no opener, or an unclosed comment is an error. Stripping before
// lexing lets a comment sit inside a two-character operator ("a &/**/& b"),
// which the lexer's inline comment skip cannot handle.
func StripComments(src string) (string, error) {
	var marks []int
	for i := 0; i+1 < len(src); i++ {
		switch {
		case src[i] == '/' && src[i+1] == '*':
			if len(marks)%2 != 0 {
				return "", &LexError{Pos: i, Msg: "nested comment", Err: ErrCommentMismatch}
			}
			marks = append(marks, i)
			i++
		case src[i] == '*' && src[i+1] == '/':
			if len(marks)%2 != 1 {
				return "", &LexError{Pos: i, Msg: "comment close without open", Err: ErrCommentMismatch}
			}
			marks = append(marks, i+1)
			i++
		}
	}
	if len(marks) == 0 {
		return src, nil
	}
	if len(marks)%2 != 0 {
		last := marks[len(marks)-1]
		return "", &LexError{Pos: last, Msg: fmt.Sprintf("comment opened at offset %d is never closed", last), Err: ErrCommentMismatch}
	}

	// Excise from the end so earlier offsets stay valid.
	out := []byte(src)
	for j := len(marks) - 1; j > 0; j -= 2 {
		out = append(out[:marks[j-1]], out[marks[j]+1:]...)
	}
	return string(out), nil
}
