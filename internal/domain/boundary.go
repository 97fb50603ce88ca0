package domain

import "encoding/json"

// Boundary — граница, для которой генерируется пакет данных.
//
// Boundary — неизменяемое значение, которое передаётся в каждую task.
// Name одновременно является именем пакета верхнего уровня
// в storage backend.
type Boundary struct {
	// Name — уникальное slug-безопасное имя границы.
	Name string `json:"name"`

	// Geometry — GeoJSON геометрия границы.
	Geometry json.RawMessage `json:"geometry"`

	// Envelope — GeoJSON охватывающий прямоугольник (bbox) границы.
	Envelope json.RawMessage `json:"envelope"`
}

// BoundarySummary — краткая информация о границе (без геометрии).
// Используется для списков в API.
type BoundarySummary struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
