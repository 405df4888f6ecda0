package token

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestTokenizeSimpleInstruction(t *testing.T) {
	toks, err := Tokenize("add x1, x0, #3\n")
	require.NoError(t, err)
	require.Equal(t, []Kind{KindMnemonic, KindRegister, KindPunct, KindRegister, KindPunct, KindPunct, KindNumber, KindNewline, KindEOF}, kinds(toks))
	require.Equal(t, "add", toks[0].Text)
	require.Equal(t, "x1", toks[1].Text)
	require.Equal(t, "3", toks[6].Text)
}

func TestTokenizeLineCommentIsSkipped(t *testing.T) {
	toks, err := Tokenize("nop ; this is a comment\nhlt\n")
	require.NoError(t, err)
	require.Equal(t, []Kind{KindMnemonic, KindNewline, KindMnemonic, KindNewline, KindEOF}, kinds(toks))
}

func TestTokenizeBlockComment(t *testing.T) {
	toks, err := Tokenize("nop ;* skip\nthis too *; hlt\n")
	require.NoError(t, err)
	require.Equal(t, []Kind{KindMnemonic, KindMnemonic, KindNewline, KindEOF}, kinds(toks))
}

func TestTokenizeUnterminatedBlockCommentIsFatal(t *testing.T) {
	_, err := Tokenize("nop ;* never closed\n")
	require.ErrorIs(t, err, ErrUnterminatedComment)
}

func TestTokenizeDirectiveAndLabel(t *testing.T) {
	toks, err := Tokenize(".global main\nmain:\n")
	require.NoError(t, err)
	require.Equal(t, KindDirective, toks[0].Kind)
	require.Equal(t, ".global", toks[0].Text)
	require.Equal(t, KindIdentifier, toks[1].Kind)
	require.Equal(t, KindIdentifier, toks[3].Kind)
	require.Equal(t, KindPunct, toks[4].Kind)
	require.Equal(t, ":", toks[4].Text)
}

func TestTokenizeHexAndBinaryLiterals(t *testing.T) {
	toks, err := Tokenize("0xFF 0b101 42\n")
	require.NoError(t, err)
	v0, err := ParseIntLiteral(toks[0].Text)
	require.NoError(t, err)
	require.Equal(t, int64(0xFF), v0)

	v1, err := ParseIntLiteral(toks[1].Text)
	require.NoError(t, err)
	require.Equal(t, int64(5), v1)

	v2, err := ParseIntLiteral(toks[2].Text)
	require.NoError(t, err)
	require.Equal(t, int64(42), v2)
}

func TestTokenizeOctalLiteral(t *testing.T) {
	toks, err := Tokenize("0o17 0O17\n")
	require.NoError(t, err)

	v0, err := ParseIntLiteral(toks[0].Text)
	require.NoError(t, err)
	require.Equal(t, int64(15), v0)

	v1, err := ParseIntLiteral(toks[1].Text)
	require.NoError(t, err)
	require.Equal(t, int64(15), v1)
}

func TestTokenizeConditionSuffixMnemonic(t *testing.T) {
	toks, err := Tokenize("beq label\n")
	require.NoError(t, err)
	require.Equal(t, KindMnemonic, toks[0].Kind)
	require.Equal(t, "beq", toks[0].Text)
}

func TestTokenizeStringAndCharLiterals(t *testing.T) {
	toks, err := Tokenize(`.ascii "hi\n" 'a'` + "\n")
	require.NoError(t, err)
	require.Equal(t, KindDirective, toks[0].Kind)
	require.Equal(t, KindString, toks[1].Kind)
	require.Equal(t, "hi\n", toks[1].Text)
	require.Equal(t, KindChar, toks[2].Kind)
	require.Equal(t, "a", toks[2].Text)
}

func TestIsRegisterBoundary(t *testing.T) {
	require.True(t, IsRegister("x0"))
	require.True(t, IsRegister("x31"))
	require.True(t, IsRegister("sp"))
	require.True(t, IsRegister("lr"))
	require.True(t, IsRegister("xzr"))
	require.False(t, IsRegister("x32"))
	require.False(t, IsRegister("xyz"))
}
