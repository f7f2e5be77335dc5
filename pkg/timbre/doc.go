// Package timbre provides a speaker embedding engine that pools
// variable-length acoustic feature sequences into fixed-size vectors
// and matches them against enrolled speakers.
//
// Quick start:
//
//	tb, err := timbre.New(timbre.WithFeatureDim(80), timbre.WithPooler("ASTP"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer tb.Close()
//
//	vec, _ := tb.Embed(frames) // frames is [][]float32, one row per frame
//	fmt.Println(len(vec))      // 160
//
// The Timbre instance is safe for concurrent use. Create once, reuse across
// requests.
package timbre
