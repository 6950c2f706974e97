package model

import (
	"fmt"
	"strings"
	"time"
)

// StartTime 计划开始时间（当天的时:分）
type StartTime struct {
	Hour   int
	Minute int
}

// ParseStartTime 解析 HH:MM，小时允许一位数
func ParseStartTime(s string) (StartTime, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return StartTime{}, fmt.Errorf("invalid start time %q: want HH:MM", s)
	}
	return StartTime{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (s StartTime) String() string {
	return fmt.Sprintf("%02d:%02d", s.Hour, s.Minute)
}

// On 返回 day 所在日历日（按 loc 计算）的计划开始时刻
func (s StartTime) On(day time.Time, loc *time.Location) time.Time {
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), s.Hour, s.Minute, 0, 0, loc)
}

func (s StartTime) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *StartTime) UnmarshalText(text []byte) error {
	parsed, err := ParseStartTime(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
