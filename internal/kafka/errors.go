package kafka

import "errors"

var ErrInboxFull = errors.New("kafka: producer inbox full")
