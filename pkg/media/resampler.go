package media

// Resampler преобразует частоту дискретизации моно PCM линейной интерполяцией.
//
// Состояние (фаза и два последних сэмпла) сохраняется между вызовами Process,
// поэтому поток, нарезанный на кадры произвольной длины, дает тот же результат,
// что и обработанный целиком, без щелчков на границах кадров.
// Один экземпляр обслуживает одно направление одного моста, не thread-safe.
type Resampler struct {
	inRate  int
	outRate int

	// Фаза в единицах outRate: пока phase >= 0, выдаем сэмплы
	phase int64
	prev  int64
	cur   int64
}

// NewResampler создает resampler; частоты сокращаются на НОД.
func NewResampler(inRate, outRate int) *Resampler {
	g := gcd(inRate, outRate)
	r := &Resampler{
		inRate:  inRate / g,
		outRate: outRate / g,
	}
	r.Reset()
	return r
}

// Reset сбрасывает фазу, как у только что созданного resampler
func (r *Resampler) Reset() {
	r.phase = -int64(r.outRate)
	r.prev = 0
	r.cur = 0
}

// Rates возвращает сокращенные частоты (вход, выход)
func (r *Resampler) Rates() (int, int) {
	return r.inRate, r.outRate
}

// Process преобразует очередной блок сэмплов.
func (r *Resampler) Process(src []int16) []int16 {
	if r.inRate == r.outRate || r.inRate <= 0 || r.outRate <= 0 {
		out := make([]int16, len(src))
		copy(out, src)
		return out
	}

	in := int64(r.inRate)
	outRate := int64(r.outRate)
	dst := make([]int16, 0, len(src)*r.outRate/r.inRate+1)

	i := 0
	for {
		for r.phase < 0 {
			if i >= len(src) {
				return dst
			}
			r.prev = r.cur
			r.cur = int64(src[i])
			i++
			r.phase += outRate
		}
		for r.phase >= 0 {
			v := (r.prev*r.phase + r.cur*(outRate-r.phase)) / outRate
			dst = append(dst, int16(v))
			r.phase -= in
		}
	}
}

func gcd(a, b int) int {
	if a <= 0 || b <= 0 {
		return 1
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
