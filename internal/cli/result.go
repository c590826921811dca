package cli

import (
	"fmt"
	"strings"
)

// ResultCode 命令结果码，进程退出码等于其数值
type ResultCode int

const (
	Success ResultCode = iota
	GenericError
	HelpRequested
	NoArguments
	ArgumentsParsingError
	HostNotReachable
	ServiceDefinitionFileNotFound
	ServiceDefinitionFileBadFormat
	RegisterServiceFailure
	UnregisterServiceFailure
	MainOptionMissing
	MultipleMainOptions
	SubOptionMissing
	MultipleSubOptions
	InvalidHostURI
	InvalidKey
	ValueCannotBeNullOrEmpty
	CreateKeyFailure
	DeleteKeyFailure
	DeleteNodeFailure
	ReadServiceFailure
	ReadKeyFailure
	KeyNotFound
)

var codeNames = [...]string{
	Success:                        "Success",
	GenericError:                   "GenericError",
	HelpRequested:                  "HelpRequested",
	NoArguments:                    "NoArguments",
	ArgumentsParsingError:          "ArgumentsParsingError",
	HostNotReachable:               "HostNotReachable",
	ServiceDefinitionFileNotFound:  "ServiceDefinitionFileNotFound",
	ServiceDefinitionFileBadFormat: "ServiceDefinitionFileBadFormat",
	RegisterServiceFailure:         "RegisterServiceFailure",
	UnregisterServiceFailure:       "UnregisterServiceFailure",
	MainOptionMissing:              "MainOptionMissing",
	MultipleMainOptions:            "MultipleMainOptions",
	SubOptionMissing:               "SubOptionMissing",
	MultipleSubOptions:             "MultipleSubOptions",
	InvalidHostURI:                 "InvalidHostURI",
	InvalidKey:                     "InvalidKey",
	ValueCannotBeNullOrEmpty:       "ValueCannotBeNullOrEmpty",
	CreateKeyFailure:               "CreateKeyFailure",
	DeleteKeyFailure:               "DeleteKeyFailure",
	DeleteNodeFailure:              "DeleteNodeFailure",
	ReadServiceFailure:             "ReadServiceFailure",
	ReadKeyFailure:                 "ReadKeyFailure",
	KeyNotFound:                    "KeyNotFound",
}

func (c ResultCode) String() string {
	if c >= 0 && int(c) < len(codeNames) {
		return codeNames[c]
	}
	return fmt.Sprintf("ResultCode(%d)", int(c))
}

const (
	mainOptions = "-n --node:    node\n" +
		"-s --svc:     service definition\n" +
		"-k --key:     key/value"
	subOptions = "-c --create:  create the key/value or service\n" +
		"-r --read:    read a key/value or service\n" +
		"-d --delete:  delete a key/value, service or node"
)

// Message 返回结果码的消息。subject 为相关对象（host、key、文件路径），只在需要它的模板中使用。
func Message(code ResultCode, subject string) string {
	switch code {
	case Success:
		return "Operation completed successfully."
	case HelpRequested:
		return ""
	case NoArguments:
		return "No arguments were provided."
	case ArgumentsParsingError:
		return "Encountered an error while parsing the arguments."
	case HostNotReachable:
		return "The specified host could not be reached: " + subject
	case ServiceDefinitionFileNotFound:
		return "The specified service definition file could not be found: " + subject
	case ServiceDefinitionFileBadFormat:
		return "The specified service definition file is not valid: " + subject
	case RegisterServiceFailure:
		return "Failed to register the service."
	case UnregisterServiceFailure:
		return "Failed to unregister the service, likely because a service with that id does not exist."
	case MainOptionMissing:
		return "Need to specify at least one main option:\n" + mainOptions
	case MultipleMainOptions:
		return "Detected multiple main options. Specify only one main option:\n" + mainOptions
	case SubOptionMissing:
		return "Need to specify at least one action option:\n" + subOptions
	case MultipleSubOptions:
		return "Detected multiple action options. Specify only one action option:\n" + subOptions
	case InvalidHostURI:
		return "The host uri is not valid: " + subject
	case InvalidKey:
		return "The specified key is not valid: " + subject
	case ValueCannotBeNullOrEmpty:
		return "Cannot create a key without a value"
	case CreateKeyFailure:
		return "Failed to create the key: " + subject
	case DeleteKeyFailure:
		return "Failed to delete the key: " + subject
	case DeleteNodeFailure:
		return "Cannot delete the specified node, likely because it does not exist."
	case ReadServiceFailure:
		return "Failed to read the service: " + subject
	case ReadKeyFailure:
		return "Failed to read the key: " + subject
	case KeyNotFound:
		return "The specified key does not exist: " + subject
	default:
		return "An unexpected error has occurred."
	}
}

// Result 一次命令的结果
type Result struct {
	Code    ResultCode
	Message string
	// Cause 核心库返回的失败消息，可为空
	Cause string

	// ShowHelp 为 true 时输出用法说明
	ShowHelp bool
	// ShowValue 为 true 时 Value 原样输出到 stdout
	ShowValue bool
	Value     string
}

// Success 是否成功
func (r Result) Success() bool {
	return r.Code == Success
}

// ExitCode 进程退出码
func (r Result) ExitCode() int {
	return int(r.Code)
}

func newResult(code ResultCode, subject string) Result {
	r := Result{Code: code, Message: Message(code, subject)}
	switch code {
	case HelpRequested, NoArguments, ArgumentsParsingError:
		r.ShowHelp = true
	}
	return r
}

func valueResult(value string) Result {
	return Result{
		Code:      Success,
		ShowValue: true,
		Value:     strings.TrimRight(value, "\n"),
	}
}
