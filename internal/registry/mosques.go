package registry

import "github.com/IliaW/jamaah-scrape-worker/internal/model"

var kentMosques = []model.MosqueDescriptor{
	{
		ID:         "kmwa",
		Name:       "Kent Muslim Welfare Association",
		URL:        "https://kmwa.org.uk/",
		Address:    "Chatham, Kent",
		SourceKind: model.GenericHTML,
	},
	{
		ID:         "chatham-hill",
		Name:       "Chatham Hill Mosque & Kent Islamic Centre",
		URL:        "https://www.chathamhillmosque.co.uk/",
		Address:    "Chatham Hill, Chatham, Kent",
		SourceKind: model.GenericHTML,
	},
	{
		ID:         "gravesend-central",
		Name:       "Gravesend Central Mosque",
		URL:        "https://www.gravesendcentralmosque.com/",
		Address:    "Gravesend, Kent",
		SourceKind: model.GenericHTML,
	},
	{
		ID:         "masjidul-abraar",
		Name:       "Masjidul Abraar",
		URL:        "https://www.masjidulabraar.org/",
		Address:    "Kent",
		SourceKind: model.GenericHTML,
	},
	{
		ID:         "sittingbourne",
		Name:       "Sittingbourne Islamic Cultural Centre",
		URL:        "https://masjidbox.com/prayer-times/sittingbourne-islamic-cultural-centre",
		Address:    "Sittingbourne, Kent",
		SourceKind: model.CustomHTML,
		SourceParams: model.SourceParams{
			Site:     "list",
			Selector: "li",
		},
	},
	{
		ID:         "maidstone",
		Name:       "Maidstone Mosque",
		URL:        "https://maidstonemosque.com/",
		Address:    "Maidstone, Kent",
		SourceKind: model.GenericHTML,
	},
	{
		ID:         "canterbury",
		Name:       "Canterbury Mosque",
		URL:        "https://canterburymosque.co.uk/",
		Address:    "Canterbury, Kent",
		SourceKind: model.GenericHTML,
	},
	{
		ID:         "ashford",
		Name:       "Ashford Mosque",
		URL:        "https://ashfordmosque.org/",
		Address:    "Ashford, Kent",
		SourceKind: model.GenericHTML,
	},
	{
		ID:         "tonbridge",
		Name:       "Tonbridge Masjid",
		URL:        "https://tonbridgemasjid.org/",
		Address:    "Tonbridge, Kent",
		SourceKind: model.GenericHTML,
	},
	{
		ID:         "masjid-abubakr",
		Name:       "Masjid Abu Bakr",
		URL:        "https://masjidabubakr.co.uk/",
		Address:    "Kent",
		SourceKind: model.GenericHTML,
	},
	{
		ID:         "secc-sidcup",
		Name:       "SECC Sidcup",
		URL:        "http://www.seccsidcup.org.uk/prayer-times/",
		Address:    "Sidcup, Kent",
		SourceKind: model.CustomHTML,
		SourceParams: model.SourceParams{
			Site:       "table",
			Selector:   "table tr",
			NameColumn: 0,
			TimeColumn: 2,
		},
	},
	{
		ID:         "dmic",
		Name:       "DMIC",
		URL:        "https://dmic.co.uk/Prayer-Times/Monthly-Prayer-Timetable-November-2025.pdf",
		Address:    "Dartford, Kent",
		SourceKind: model.PDFTable,
		SourceParams: model.SourceParams{
			URLTemplate: "https://dmic.co.uk/Prayer-Times/Monthly-Prayer-Timetable-{month}-{year}.pdf",
			Layout:      model.MonthlyTable,
		},
	},
}
