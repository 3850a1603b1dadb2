package zerror

// Status classifies a ZError independent of the transport it is rendered on.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusNotFound
	StatusValidationFailed
	StatusConflict
	StatusUnprocessableEntity
	StatusInternal
)

var statusNames = [...]string{
	StatusUnknown:             "UNKNOWN",
	StatusNotFound:            "NOT_FOUND",
	StatusValidationFailed:    "VALIDATION_FAILED",
	StatusConflict:            "CONFLICT",
	StatusUnprocessableEntity: "UNPROCESSABLE_ENTITY",
	StatusInternal:            "INTERNAL",
}

func (s Status) String() string {
	if int(s) < len(statusNames) {
		return statusNames[s]
	}
	return statusNames[StatusUnknown]
}
