package util

import (
	"fmt"
	"math/rand"
)

// GenerateRandomNumber generates a random number between min and max (inclusive)
func GenerateRandomNumber(min, max int) int {
	return min + rand.Intn(max-min+1)
}

// GenerateOrderNumber returns a display order number such as "#482913".
func GenerateOrderNumber() string {
	return fmt.Sprintf("#%06d", GenerateRandomNumber(100000, 999999))
}
