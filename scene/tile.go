// Package scene implements the Tile Container and renderer loop
// described in spec 3.6/4.10: a spatial hash of entities into
// screen-sized tiles, with per-frame batched worker updates and a
// deferred delete/reinsert pipeline.
package scene

import "math"

// TileCoord identifies one resolution-sized cell of the world (spec
// 3.6: "int16 tileX, int16 tileY").
type TileCoord struct {
	X, Y int16
}

// TileCoordOf computes the tile coordinate of (x, y) under a
// resX x resY tiling (spec 4.10: "floor(x / res_x), floor(y / res_y)").
func TileCoordOf(x, y, resX, resY float64) TileCoord {
	return TileCoord{X: int16(math.Floor(x / resX)), Y: int16(math.Floor(y / resY))}
}

// VisibleTiles returns the 3x3 neighborhood around the camera's tile
// (spec 4.10).
func VisibleTiles(camera TileCoord) []TileCoord {
	out := make([]TileCoord, 0, 9)
	for dx := int16(-1); dx <= 1; dx++ {
		for dy := int16(-1); dy <= 1; dy++ {
			out = append(out, TileCoord{X: camera.X + dx, Y: camera.Y + dy})
		}
	}
	return out
}
