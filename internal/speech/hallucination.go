package speech

import "strings"

// Known whisper hallucinations on silent or music-only input. Most are
// subtitle credits memorised from the training data.
var knownHallucinations = []string{
	"www.mooji.org",
	"Ondertitels ingediend door de Amara.org gemeenschap",
	"Ondertiteld door de Amara.org gemeenschap",
	"Ondertiteling door de Amara.org gemeenschap",
	"Untertitelung aufgrund der Amara.org-Community",
	"Untertitelung im Auftrag des ZDF für funk, 2016",
	"Untertitel im Auftrag des ZDF für funk, 2017",
	"Untertitel im Auftrag des ZDF für funk, 2018",
	"Untertitel von Stephanie Geiges",
	"Untertitel der Amara.org-Community",
	"Untertitel im Auftrag des ZDF, 2017",
	"Untertitel im Auftrag des ZDF, 2018",
	"Untertitel im Auftrag des ZDF, 2019",
	"Untertitel im Auftrag des ZDF, 2020",
	"Untertitel im Auftrag des ZDF, 2021",
	"Untertitelung im Auftrag des ZDF, 2021",
	"Copyright WDR 2021",
	"Copyright WDR 2020",
	"Copyright WDR 2019",
	"SWR 2021",
	"SWR 2020",
	"Sous-titres réalisés para la communauté d'Amara.org",
	"Sous-titres réalisés par la communauté d'Amara.org",
	"Sous-titres fait par Sous-titres par Amara.org",
	"Sous-titres réalisés par les SousTitres d'Amara.org",
	"Sous-titres par Amara.org",
	"Sous-titres par la communauté d'Amara.org",
	"Sous-titres réalisés pour la communauté d'Amara.org",
	"Sous-titres réalisés par la communauté de l'Amara.org",
	"Sous-Titres faits par la communauté d'Amara.org",
	"Sous-titres par l'Amara.org",
	"Sous-titres fait par la communauté d'Amara.org",
	"Sous-titrage ST' 501",
	"Sous-titrage ST'501",
	"Cliquez-vous sur les sous-titres et abonnez-vous à la chaîne d'Amara.org",
	"❤️ par SousTitreur.com",
	"Sottotitoli creati dalla comunità Amara.org",
	"Sottotitoli di Sottotitoli di Amara.org",
	"Sottotitoli e revisione al canale di Amara.org",
	"Sottotitoli e revisione a cura di Amara.org",
	"Sottotitoli e revisione a cura di QTSS",
	"Sottotitoli a cura di QTSS",
	"Subtítulos realizados por la comunidad de Amara.org",
	"Subtitulado por la comunidad de Amara.org",
	"Subtítulos por la comunidad de Amara.org",
	"Subtítulos creados por la comunidad de Amara.org",
	"Subtítulos en español de Amara.org",
	"Subtítulos hechos por la comunidad de Amara.org",
	"Subtitulos por la comunidad de Amara.org",
}

var hallucinationSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(knownHallucinations))
	for _, h := range knownHallucinations {
		m[normalizeText(h)] = struct{}{}
	}
	return m
}()

func normalizeText(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), ".")
}

// IsHallucination reports whether text is a known whisper hallucination.
func IsHallucination(text string) bool {
	_, ok := hallucinationSet[normalizeText(text)]
	return ok
}

// CleanText joins the result's segments, dropping known hallucinations.
func CleanText(r *Result) string {
	if r == nil {
		return ""
	}
	if len(r.Segments) == 0 {
		if IsHallucination(r.Text) {
			return ""
		}
		return strings.TrimSpace(r.Text)
	}
	parts := make([]string, 0, len(r.Segments))
	for _, seg := range r.Segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" || IsHallucination(text) {
			continue
		}
		parts = append(parts, text)
	}
	return strings.Join(parts, " ")
}
