package model

import "errors"

// 引擎对外暴露的三类错误, 调用方通过 errors.Is 判断
var (
	ErrInsufficientData = errors.New("insufficient data")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrIllegalState     = errors.New("illegal state")
)
