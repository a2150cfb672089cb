// AngelaMos | 2026
// export_test.go

package subscription

import "time"

func SetClock(s *Service, now func() time.Time) {
	s.now = now
}
