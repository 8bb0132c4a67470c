package timeline

// Overlap 返回最大的 L ≥ minLen, 使得 base 的后 L 个字符等于 next 的
// 前 L 个字符; 找不到返回 0。按 rune 计数, 从 min(len) 向下扫描,
// 保证取到最大重叠而不是任意一个。
func Overlap(base, next string, minLen int) int {
	if minLen < 1 {
		minLen = 1
	}
	b := []rune(base)
	n := []rune(next)
	max := len(b)
	if len(n) < max {
		max = len(n)
	}
	for l := max; l >= minLen; l-- {
		if runesEqual(b[len(b)-l:], n[:l]) {
			return l
		}
	}
	return 0
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// trimAfterOverlap 去掉 next 开头与 base 重叠的 n 个 rune。
func trimAfterOverlap(next string, n int) string {
	if n <= 0 {
		return next
	}
	r := []rune(next)
	if n >= len(r) {
		return ""
	}
	return string(r[n:])
}
