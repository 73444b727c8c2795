package engine

import "roadsafety/internal/models"

// Regression is a least-squares trend line.
type Regression struct {
	Slope     float64
	Intercept float64
	// Trend holds the projected y for every input x, in input order.
	Trend []models.Point
}

// LinearRegression fits y = slope*x + intercept with the closed-form
// least-squares estimator. It reports false, with an empty trend, for fewer
// than two points or when every x is identical.
func LinearRegression(points []models.Point) (Regression, bool) {
	if len(points) < 2 {
		return Regression{}, false
	}

	var sumX, sumY float64
	for _, p := range points {
		sumX += p.X
		sumY += p.Y
	}
	n := float64(len(points))
	xMean, yMean := sumX/n, sumY/n

	var num, den float64
	for _, p := range points {
		dx := p.X - xMean
		num += dx * (p.Y - yMean)
		den += dx * dx
	}
	if den == 0 {
		return Regression{}, false
	}

	reg := Regression{Slope: num / den}
	reg.Intercept = yMean - reg.Slope*xMean
	reg.Trend = make([]models.Point, len(points))
	for i, p := range points {
		reg.Trend[i] = models.Point{X: p.X, Y: reg.Slope*p.X + reg.Intercept}
	}
	return reg, true
}
