package game

// The track is a fixed circle of 24 tiles split into 4 starting sectors.
// Seat index decides a player's color and starting tile.
const (
	BoardSize  = 24
	SectorSize = 6
	MaxSeats   = 4
)

var seatColors = [MaxSeats]string{"red", "green", "blue", "yellow"}

// wrapMod keeps a board position inside [0, m), also for negative values.
func wrapMod(n, m int) int {
	return ((n % m) + m) % m
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	default:
		return 0
	}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
