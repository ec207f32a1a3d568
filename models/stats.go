package models

// Stats is the dashboard summary served by the API.
type Stats struct {
	TodayScanned  int `json:"today_scanned"`
	TodaySold     int `json:"today_sold"`
	WeekSold      int `json:"week_sold"`
	Pending       int `json:"pending"`
	KeywordCount  int `json:"keyword_count"`
	SelectedCount int `json:"selected_count"`
}
