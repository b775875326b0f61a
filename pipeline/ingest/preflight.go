package ingest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"unicode/utf8"
)

// CheckEncoding возвращает непустой список проблем, если файл не является корректным UTF-8
func CheckEncoding(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return []string{fmt.Sprintf("[EncodingCheck] не удалось прочитать '%s': %v", path, err)}
	}
	if !utf8.Valid(data) {
		return []string{fmt.Sprintf("[EncodingCheck] '%s' содержит байты вне кодировки UTF-8", path)}
	}
	return nil
}

// ValidateCSV проверяет, что CSV-файл существует, в UTF-8, содержит обязательные
// колонки и хотя бы одну строку данных
func ValidateCSV(path string, requiredColumns []string) []string {
	if _, err := os.Stat(path); err != nil {
		return []string{fmt.Sprintf("[FileFormat] файл '%s' не найден", path)}
	}

	issues := CheckEncoding(path)
	if len(issues) > 0 {
		return issues
	}

	file, err := os.Open(path)
	if err != nil {
		return []string{fmt.Sprintf("[FileFormat] не удалось открыть '%s': %v", path, err)}
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return []string{fmt.Sprintf("[FileFormat] не удалось прочитать заголовок '%s': %v", path, err)}
	}

	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[col] = true
	}

	var missing []string
	for _, col := range requiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		issues = append(issues, fmt.Sprintf("[FileFormat] в '%s' отсутствуют колонки: %v", path, missing))
	}

	if _, err := reader.Read(); err == io.EOF {
		issues = append(issues, fmt.Sprintf("[FileFormat] '%s' не содержит строк данных", path))
	}

	return issues
}

// ValidateJSONFile проверяет, что JSON-файл существует, в UTF-8 и является непустым массивом
func ValidateJSONFile(path string) []string {
	if _, err := os.Stat(path); err != nil {
		return []string{fmt.Sprintf("[FileFormat] файл '%s' не найден", path)}
	}

	issues := CheckEncoding(path)
	if len(issues) > 0 {
		return issues
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return []string{fmt.Sprintf("[FileFormat] не удалось прочитать '%s': %v", path, err)}
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(data, &arr); err != nil {
		issues = append(issues, fmt.Sprintf("[FileFormat] '%s' должен быть JSON-массивом: %v", path, err))
	} else if len(arr) == 0 {
		issues = append(issues, fmt.Sprintf("[FileFormat] '%s' — пустой JSON-массив", path))
	}

	return issues
}

// DetectCSVDuplicates возвращает (всего строк, число дубликатов) по колонке первичного ключа
func DetectCSVDuplicates(path string, pkColumn string) (total int, dupes int) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return 0, 0
	}

	pkIndex := -1
	for i, col := range header {
		if col == pkColumn {
			pkIndex = i
			break
		}
	}
	if pkIndex < 0 {
		return 0, 0
	}

	seen := make(map[string]bool)
	for {
		record, err := reader.Read()
		if err != nil {
			break
		}
		total++
		value := ""
		if pkIndex < len(record) {
			value = record[pkIndex]
		}
		if seen[value] {
			dupes++
		} else {
			seen[value] = true
		}
	}

	return total, dupes
}
