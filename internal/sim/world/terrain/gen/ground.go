package gen

// SampleHeight is the ground elevation query used for collision and
// ground clamping.
func (s *Sampler) SampleHeight(x, z float32) float32 {
	return float32(s.Height(float64(x), float64(z)))
}

func (s *Sampler) SampleNormal(x, z float32) [3]float32 {
	n := s.Normal(float64(x), float64(z))
	return [3]float32{n[0], n[1], n[2]}
}
