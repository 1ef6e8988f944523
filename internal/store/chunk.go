package store

// maxParams is PostgreSQL's extended protocol limit on parameters per statement
const maxParams = 65535

// paramHeadroom is reserved for parameters gorm adds outside the row values
const paramHeadroom = 1000

// safeChunkSize computes the largest chunk that stays under the parameter limit, capped by
// ceiling when ceiling is positive.
//
// Example:
//   - MarketActivity: 26 columns → (65,535 - 1,000) / 26 = 2,482 rows/chunk
//   - CurrentVault: 10 columns → (65,535 - 1,000) / 10 = 6,453 rows/chunk
func safeChunkSize(columns int, ceiling int) int {
	size := max((maxParams-paramHeadroom)/max(columns, 1), 1)
	if ceiling > 0 && ceiling < size {
		return ceiling
	}
	return size
}

// splitChunks splits rows into consecutive chunks of at most size rows, preserving order
func splitChunks[T any](rows []T, size int) [][]T {
	if len(rows) == 0 {
		return nil
	}
	size = max(size, 1)

	chunks := make([][]T, 0, (len(rows)+size-1)/size)
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		chunks = append(chunks, rows[start:end:end])
	}
	return chunks
}
