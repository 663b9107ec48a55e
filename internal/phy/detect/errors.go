package detect

import "errors"

var ErrUnsupported = errors.New("unsupported phy")
