package broker

import "errors"

var errEmptyFilter = errors.New("broker: topic filter is empty")
