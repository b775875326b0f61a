package utils

import "strings"

// SanitizeLiteral экранирует одинарные кавычки в строковом литерале.
// Единственная точка санитизации для значений, которые подставляются
// в текст SQL-запроса (списки тарифов менторов в IN (...)).
// Все остальные значения передаются через плейсхолдеры драйвера.
func SanitizeLiteral(value string) string {
	return strings.ReplaceAll(value, "'", "''")
}

// BuildInList собирает SQL-список для конструкции IN (...):
// ["Gold", "Silver"] -> "'Gold', 'Silver'".
// Каждый элемент проходит через SanitizeLiteral.
func BuildInList(values []string) string {
	quoted := make([]string, 0, len(values))
	for _, v := range values {
		quoted = append(quoted, "'"+SanitizeLiteral(v)+"'")
	}
	return strings.Join(quoted, ", ")
}
