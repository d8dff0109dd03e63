package partner

import "errors"

var (
	ErrSchoolNotFound  = errors.New("partner school not found")
	ErrJobNotFound     = errors.New("job not found")
	ErrJobNotClaimable = errors.New("job is not queued")
)
