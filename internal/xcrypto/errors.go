package xcrypto

import "errors"

var errInvalidPointLen = errors.New("xcrypto: invalid point encoding")
