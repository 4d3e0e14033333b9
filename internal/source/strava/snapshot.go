package strava

import (
	"errors"
	"fmt"
	"time"
)

// Totals 对应 Strava 统计接口中的一组累计值。
type Totals struct {
	Count         int     `json:"count"`
	Distance      float64 `json:"distance"`
	MovingTime    int     `json:"moving_time"`
	ElapsedTime   int     `json:"elapsed_time"`
	ElevationGain float64 `json:"elevation_gain"`
}

// Stats 是 GET /athletes/{id}/stats 的子集。
type Stats struct {
	BiggestRideDistance float64 `json:"biggest_ride_distance"`
	RecentRunTotals     Totals  `json:"recent_run_totals"`
	YTDRunTotals        Totals  `json:"ytd_run_totals"`
	AllRunTotals        Totals  `json:"all_run_totals"`
	RecentRideTotals    Totals  `json:"recent_ride_totals"`
	YTDRideTotals       Totals  `json:"ytd_ride_totals"`
	AllRideTotals       Totals  `json:"all_ride_totals"`
}

// Activity 是 GET /athlete/activities 单项的子集。
type Activity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	SportType          string    `json:"sport_type"`
	Distance           float64   `json:"distance"`
	MovingTime         int       `json:"moving_time"`
	ElapsedTime        int       `json:"elapsed_time"`
	TotalElevationGain float64   `json:"total_elevation_gain"`
	AverageSpeed       float64   `json:"average_speed"`
	StartDate          time.Time `json:"start_date"`
}

// Snapshot 是缓存的数据形状，stats 与 activities 总是一起被替换。
type Snapshot struct {
	Stats      *Stats     `json:"stats"`
	Activities []Activity `json:"activities"`
}

// ValidateSnapshot 要求 stats 存在且每个活动都带非零 id。
func ValidateSnapshot(s Snapshot) error {
	if s.Stats == nil {
		return errors.New("stats missing")
	}
	for i, activity := range s.Activities {
		if activity.ID == 0 {
			return fmt.Errorf("activity #%d has no id", i)
		}
	}
	return nil
}
