// AngelaMos | 2026
// export_test.go

package offer

import "time"

func SetClock(s *Service, now func() time.Time) {
	s.now = now
}
