package catalog

import "github.com/quocanhngo/reelsync/internal/model"

// DemoTitles is the catalog the seeder writes and the in-memory backend starts with
var DemoTitles = []model.Title{
	{ID: 1, Name: "The Long Night", DurationSeconds: 7260},
	{ID: 2, Name: "Harbor Lights", DurationSeconds: 5880},
	{ID: 3, Name: "Orbit, Episode 1", DurationSeconds: 2640},
	{ID: 4, Name: "Orbit, Episode 2", DurationSeconds: 2710},
	{ID: 5, Name: "Short: Paper Boats", DurationSeconds: 540},
	{ID: 6, Name: "Live: Season Finale", DurationSeconds: 0},
}
