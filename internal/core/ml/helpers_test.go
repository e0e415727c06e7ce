package ml

// blobs returns n rows in two well separated clusters, alternating classes.
func blobs(n int) ([][]float64, []string) {
	X := make([][]float64, n)
	y := make([]string, n)
	for i := 0; i < n; i++ {
		jitter := float64((i*7)%5) * 0.1
		if i%2 == 0 {
			X[i] = []float64{jitter, 1 - jitter, 0.5}
			y[i] = "no"
		} else {
			X[i] = []float64{6 + jitter, 5 - jitter, 0.5}
			y[i] = "yes"
		}
	}
	return X, y
}

// threeBlobs is blobs with a third cluster.
func threeBlobs(n int) ([][]float64, []string) {
	X := make([][]float64, n)
	y := make([]string, n)
	for i := 0; i < n; i++ {
		jitter := float64((i*3)%4) * 0.1
		switch i % 3 {
		case 0:
			X[i], y[i] = []float64{jitter, jitter}, "setosa"
		case 1:
			X[i], y[i] = []float64{5 + jitter, jitter}, "versicolor"
		default:
			X[i], y[i] = []float64{jitter, 5 + jitter}, "virginica"
		}
	}
	return X, y
}

func fastNetParams() map[string]any {
	return map[string]any{
		"epochs":             200.0,
		"learning_rate":      0.01,
		"hidden_layer_sizes": []any{8.0},
		"random_state":       7.0,
	}
}
