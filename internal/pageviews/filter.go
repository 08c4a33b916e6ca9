package pageviews

import "strings"

// ignorePrefixes are namespace prefixes of non-article pages across the
// supported editions.
var ignorePrefixes = []string{
	"Special:", "Wikipedia:", "File:", "Image:", "Category:", "Template:",
	"Help:", "Portal:", "Draft:", "Talk:", "User:", "MediaWiki:", "Book:",
	"文件:", "分类:", "模版:", "模板:", "帮助:", "传送门:", "草稿:", "讨论:", "用户:", "话题:",
	"特別:", "ファイル:", "利用者:", "ノート:", "画像:",
	"Spezial:", "Datei:", "Kategorie:", "Vorlage:", "Hilfe:", "Diskussion:", "Benutzer:",
	"Spécial:", "Wikipédia:", "Fichier:", "Catégorie:", "Modèle:", "Aide:", "Portail:", "Discussion:", "Utilisateur:",
	"Служебная:", "Википедия:", "Файл:", "Категория:", "Шаблон:", "Справка:", "Портал:", "Обсуждение:", "Участник:",
	"Speciale:", "Categoria:", "Aiuto:", "Portale:", "Discussione:", "Utente:",
}

// ignoreTerms are exact titles that always rank high but are not content:
// main pages, search pages and error placeholders.
var ignoreTerms = map[string]bool{
	"Main_Page": true, "Wikipedia:首页": true, "首页": true, "メインページ": true,
	"Wikipedia:Hauptseite": true, "Wikipédia:Accueil_principal": true,
	"Заглавная_страница": true, "Pagina_principale": true,
	"Special:Search": true, "Special:搜索": true, "Special:Recherche": true, "Spezial:Suche": true,
	"Служебная:Поиск": true, "Speciale:Ricerca": true,
	"-": true, "404.php": true, "Nap": true, "Undefined": true,
	"Special:CreateAccount": true, "Special:Watchlist": true, "Special:RecentChanges": true,
	"Cookie_Statement": true, "Privacy_policy": true, "Wikipedia:About": true, "Wikipedia:General_disclaimer": true,
}

// Ignored reports whether title should be excluded from rankings.
func Ignored(title string) bool {
	if ignoreTerms[title] {
		return true
	}
	for _, p := range ignorePrefixes {
		if strings.HasPrefix(title, p) {
			return true
		}
	}
	return false
}
