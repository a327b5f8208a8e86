package indicators

// smoother is a recursive average seeded with the plain mean of its first
// n inputs. alpha 2/(n+1) is the EMA weighting, 1/n is Wilder's.
type smoother struct {
	n     int
	alpha float64

	count int
	sum   float64
	v     float64
}

func emaSmoother(n int) smoother {
	return smoother{n: n, alpha: 2 / float64(n+1)}
}

func wilderSmoother(n int) smoother {
	return smoother{n: n, alpha: 1 / float64(n)}
}

func (s *smoother) push(x float64) {
	if s.count < s.n {
		s.sum += x
		s.count++
		if s.count == s.n {
			s.v = s.sum / float64(s.n)
		}
		return
	}
	s.v += s.alpha * (x - s.v)
}

func (s *smoother) ready() bool {
	return s.n > 0 && s.count >= s.n
}

func (s *smoother) value() float64 {
	if !s.ready() {
		return 0
	}
	return s.v
}
