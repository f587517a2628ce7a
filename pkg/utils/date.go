package utils

import (
	"fmt"
	"log"
	"time"
)

// GetMarketLocation returns the A-share market timezone.
func GetMarketLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		log.Fatal("Failed to load location", err)
	}
	return loc
}

func TimeNowMarket() time.Time {
	return time.Now().In(GetMarketLocation())
}

func PrettyDate(date time.Time) string {
	return fmt.Sprintf("%02d %s %d - %02d:%02d CST",
		date.Day(),
		date.Month().String(),
		date.Year(),
		date.Hour(),
		date.Minute(),
	)
}
