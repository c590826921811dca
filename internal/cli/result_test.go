package cli

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResultCode_Numbering(t *testing.T) {
	// 退出码沿用既有脚本依赖的编号
	assert.Equal(t, 0, int(Success))
	assert.Equal(t, 5, int(HostNotReachable))
	assert.Equal(t, 14, int(InvalidHostURI))
	assert.Equal(t, 19, int(DeleteNodeFailure))
	assert.Equal(t, 22, int(KeyNotFound))

	assert.Equal(t, "KeyNotFound", KeyNotFound.String())
	assert.Equal(t, "ResultCode(99)", ResultCode(99).String())
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Operation completed successfully.", Message(Success, "ignored"))
	assert.Equal(t, "The specified host could not be reached: http://h:1", Message(HostNotReachable, "http://h:1"))
	assert.Equal(t, "Failed to delete the key: motd", Message(DeleteKeyFailure, "motd"))
	assert.Equal(t, "Cannot create a key without a value", Message(ValueCannotBeNullOrEmpty, "motd"))
	assert.Equal(t, "An unexpected error has occurred.", Message(GenericError, ""))
	assert.Equal(t, Message(GenericError, ""), Message(ResultCode(-1), ""))

	for _, code := range []ResultCode{MainOptionMissing, MultipleMainOptions} {
		msg := Message(code, "")
		assert.Contains(t, msg, "-n --node")
		assert.Contains(t, msg, "-k --key")
	}
	assert.Contains(t, Message(SubOptionMissing, ""), "-d --delete")
}

func TestPrinter(t *testing.T) {
	var out, errOut bytes.Buffer
	p := &Printer{Stdout: &out, Stderr: &errOut}

	code := p.Print(newResult(Success, ""))
	assert.Equal(t, 0, code)
	assert.Equal(t, "Operation completed successfully.\n", out.String())
	assert.Empty(t, errOut.String())

	out.Reset()
	code = p.Print(newResult(KeyNotFound, "motd"))
	assert.Equal(t, int(KeyNotFound), code)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), "motd")

	out.Reset()
	errOut.Reset()
	code = p.Print(valueResult("hi\n"))
	assert.Equal(t, 0, code)
	assert.Equal(t, "hi\n", out.String())

	out.Reset()
	code = p.Print(newResult(NoArguments, ""))
	assert.Equal(t, int(NoArguments), code)
	assert.Contains(t, errOut.String(), "No arguments were provided.")
	assert.Contains(t, out.String(), "--svc")

	out.Reset()
	errOut.Reset()
	failed := newResult(ReadKeyFailure, "motd")
	failed.Cause = "connection refused"
	p.Print(failed)
	assert.Equal(t, Message(ReadKeyFailure, "motd")+"\nconnection refused\n", errOut.String())

	out.Reset()
	errOut.Reset()
	p.Color = true
	p.Print(newResult(Success, ""))
	p.Print(newResult(GenericError, ""))
	assert.True(t, strings.HasPrefix(out.String(), colorGreen))
	assert.True(t, strings.HasPrefix(errOut.String(), colorRed))
}

func TestParseOptions(t *testing.T) {
	o, err := ParseOptions([]string{"-r", "-k", "motd"})
	assert.NoError(t, err)
	assert.Equal(t, "localhost", o.Host)
	assert.Equal(t, 8500, o.Port)
	assert.Equal(t, "http://localhost:8500", o.HostString())

	o, err = ParseOptions([]string{"--read", "--key", "motd", "--host", "::1"})
	assert.NoError(t, err)
	assert.Equal(t, "http://[::1]:8500", o.HostString())

	_, err = ParseOptions([]string{"-p", "abc"})
	assert.Error(t, err)
}
