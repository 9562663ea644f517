package asm

import (
	"errors"

	"irc16/pkg/translate"
)

var f = translate.From

var (
	ErrLabelInvalid       = errors.New(f("label invalid"))
	ErrLabelDuplicate     = errors.New(f("label duplicated"))
	ErrOpcodeInvalid      = errors.New(f("opcode invalid"))
	ErrOperandCount       = errors.New(f("wrong number of operands"))
	ErrOperandInvalid     = errors.New(f("operand invalid"))
	ErrOperandShape       = errors.New(f("operand not allowed here"))
	ErrImmediateRange     = errors.New(f("immediate out of range"))
	ErrDirectiveArguments = errors.New(f("directive arguments invalid"))
)

type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err ErrSyntax) Unwrap() error {
	return err.Err
}

type ErrOperand string

func (err ErrOperand) Error() string {
	return f("'%v' is not a register, immediate, memory reference or label", string(err))
}

func (err ErrOperand) Unwrap() error {
	return ErrOperandInvalid
}
