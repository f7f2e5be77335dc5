package timbre_test

import (
	"fmt"
	"log"

	"github.com/crimson-sun/timbre/pkg/timbre"
)

func Example() {
	tb, err := timbre.New(
		timbre.WithPooler("TSTP"),
		timbre.WithFeatureDim(4),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer tb.Close()

	frames := [][]float32{
		{1, 2, 3, 4},
		{2, 3, 4, 5},
		{3, 4, 5, 6},
	}
	vec, err := tb.Embed(frames)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println("dim:", tb.OutDim())
	fmt.Println("len:", len(vec))
	// Output:
	// dim: 8
	// len: 8
}

func Example_identify() {
	tb, err := timbre.New(
		timbre.WithPooler("TSTP"),
		timbre.WithFeatureDim(2),
		timbre.WithThreshold(0.3),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer tb.Close()

	alice := [][]float32{{1, 0}, {2, 0}, {3, 0}}
	if err := tb.Enroll("alice", alice); err != nil {
		log.Fatal(err)
	}

	m, err := tb.Identify(alice)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(m.Speaker)
	// Output:
	// alice
}
