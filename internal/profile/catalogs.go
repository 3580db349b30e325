package profile

import (
	"github.com/obsfinder/obsfinder/internal/clean"
	"github.com/obsfinder/obsfinder/internal/persist"
)

func init() {
	register(gaia)
	register(twoMASS)
	register(gaia2MASS)
}

var gaiaColumns = []string{
	"source_id",
	"phot_g_n_obs", "phot_g_mean_mag", "phot_g_mean_flux", "phot_g_mean_flux_error",
	"phot_bp_n_obs", "phot_bp_mean_mag", "phot_bp_mean_flux", "phot_bp_mean_flux_error",
	"phot_rp_n_obs", "phot_rp_mean_mag", "phot_rp_mean_flux", "phot_rp_mean_flux_error",
	"l", "b", "parallax", "parallax_error",
}

var gaia = newProfile(Profile{
	Name:        "gaia",
	Description: "Gaia DR3 photometry and parallaxes",
	Service:     ServiceGaia,
	IDColumn:    "source_id",
	Columns:     gaiaColumns,
	Rules:       []clean.Rule{clean.Require{Columns: gaiaColumns}},
	Outputs: []persist.Output{
		{Code: "source_id", Column: "source_id"},
		{Code: "G_nobs", Column: "phot_g_n_obs"},
		{Code: "G", Column: "phot_g_mean_mag"},
		{Code: "G_flux", Column: "phot_g_mean_flux"},
		{Code: "G_flux_err", Column: "phot_g_mean_flux_error"},
		{Code: "BP_nobs", Column: "phot_bp_n_obs"},
		{Code: "BP", Column: "phot_bp_mean_mag"},
		{Code: "BP_flux", Column: "phot_bp_mean_flux"},
		{Code: "BP_flux_err", Column: "phot_bp_mean_flux_error"},
		{Code: "RP_nobs", Column: "phot_rp_n_obs"},
		{Code: "RP", Column: "phot_rp_mean_mag"},
		{Code: "RP_flux", Column: "phot_rp_mean_flux"},
		{Code: "RP_flux_err", Column: "phot_rp_mean_flux_error"},
		{Code: "l", Column: "l"},
		{Code: "b", Column: "b"},
		{Code: "parallax", Column: "parallax"},
		{Code: "parallax_err", Column: "parallax_error"},
	},
	DefaultExt: ".csv",
}, `
SELECT source_id,
  phot_g_n_obs, phot_g_mean_mag, phot_g_mean_flux, phot_g_mean_flux_error,
  phot_bp_n_obs, phot_bp_mean_mag, phot_bp_mean_flux, phot_bp_mean_flux_error,
  phot_rp_n_obs, phot_rp_mean_mag, phot_rp_mean_flux, phot_rp_mean_flux_error,
  l, b, parallax, parallax_error
FROM gaiadr3.gaia_source
WHERE l BETWEEN {{deg .LongMin}} AND {{deg .LongMax}}
  AND b BETWEEN {{deg .LatMin}} AND {{deg .LatMax}}
`)

var twoMASS = newProfile(Profile{
	Name:        "2mass",
	Description: "2MASS point source catalog J, H, Ks photometry",
	Service:     ServiceIRSA,
	Columns:     []string{"j_m", "j_msigcom", "h_m", "h_msigcom", "k_m", "k_msigcom", "glon", "glat"},
	Rules: []clean.Rule{
		clean.Require{Columns: []string{"j_m", "h_m", "k_m", "glon", "glat"}},
		clean.AnyBelow{Columns: []string{"j_msigcom", "h_msigcom", "k_msigcom"}, Threshold: 5.0},
	},
	Outputs: []persist.Output{
		{Code: "J", Column: "j_m"},
		{Code: "J_err", Column: "j_msigcom"},
		{Code: "H", Column: "h_m"},
		{Code: "H_err", Column: "h_msigcom"},
		{Code: "K", Column: "k_m"},
		{Code: "K_err", Column: "k_msigcom"},
		{Code: "l", Column: "glon"},
		{Code: "b", Column: "glat"},
	},
	DefaultExt: ".csv",
}, `
SELECT j_m, j_msigcom, h_m, h_msigcom, k_m, k_msigcom, glon, glat
FROM fp_psc
WHERE glon BETWEEN {{deg .LongMin}} AND {{deg .LongMax}}
  AND glat BETWEEN {{deg .LatMin}} AND {{deg .LatMax}}
`)

var gaia2MASS = newProfile(Profile{
	Name:        "gaia2mass",
	Description: "Gaia DR3 cross-matched with 2MASS point sources",
	Service:     ServiceGaia,
	IDColumn:    "source_id",
	Columns: []string{
		"source_id", "phot_bp_mean_mag", "phot_bp_mean_flux_over_error",
		"phot_g_mean_mag", "phot_g_mean_flux_over_error", "phot_rp_mean_mag",
		"phot_rp_mean_flux_over_error", "parallax", "parallax_error", "l", "b",
		"nu_eff_used_in_astrometry", "pseudocolour", "ecl_lat", "astrometric_params_solved",
		"j_m", "j_msigcom", "h_m", "h_msigcom", "ks_m", "ks_msigcom",
	},
	Rules: []clean.Rule{clean.Require{Columns: []string{
		"phot_g_mean_mag", "phot_bp_mean_mag", "phot_rp_mean_mag", "parallax",
		"phot_bp_mean_flux_over_error", "phot_g_mean_flux_over_error", "phot_rp_mean_flux_over_error",
		"parallax_error", "ks_m", "j_m", "h_m", "ks_msigcom", "j_msigcom", "h_msigcom",
	}}},
	Derivs: []clean.Derivation{
		clean.MagError{Source: "phot_bp_mean_flux_over_error", Target: "phot_bp_mean_mag_error"},
		clean.MagError{Source: "phot_g_mean_flux_over_error", Target: "phot_g_mean_mag_error"},
		clean.MagError{Source: "phot_rp_mean_flux_over_error", Target: "phot_rp_mean_mag_error"},
	},
	ZeroPoint: &clean.ZeroPoint{
		Parallax:     "parallax",
		GMag:         "phot_g_mean_mag",
		NuEff:        "nu_eff_used_in_astrometry",
		Pseudocolour: "pseudocolour",
		EclLat:       "ecl_lat",
		Solved:       "astrometric_params_solved",
		Target:       "parallax_zpt",
	},
	Outputs: []persist.Output{
		{Code: "source_id", Column: "source_id"},
		{Code: "BP", Column: "phot_bp_mean_mag"},
		{Code: "BP_err", Column: "phot_bp_mean_mag_error"},
		{Code: "G", Column: "phot_g_mean_mag"},
		{Code: "G_err", Column: "phot_g_mean_mag_error"},
		{Code: "RP", Column: "phot_rp_mean_mag"},
		{Code: "RP_err", Column: "phot_rp_mean_mag_error"},
		{Code: "parallax", Column: "parallax"},
		{Code: "parallax_err", Column: "parallax_error"},
		{Code: "J", Column: "j_m"},
		{Code: "J_err", Column: "j_msigcom"},
		{Code: "H", Column: "h_m"},
		{Code: "H_err", Column: "h_msigcom"},
		{Code: "K", Column: "ks_m"},
		{Code: "K_err", Column: "ks_msigcom"},
		{Code: "l", Column: "l"},
		{Code: "b", Column: "b"},
	},
	DefaultExt: ".parquet",
}, `
SELECT gaia.source_id, gaia.phot_bp_mean_mag, gaia.phot_bp_mean_flux_over_error,
  gaia.phot_g_mean_mag, gaia.phot_g_mean_flux_over_error, gaia.phot_rp_mean_mag,
  gaia.phot_rp_mean_flux_over_error, gaia.parallax, gaia.parallax_error, gaia.l, gaia.b,
  gaia.nu_eff_used_in_astrometry, gaia.pseudocolour, gaia.ecl_lat, gaia.astrometric_params_solved,
  tmass.j_m, tmass.j_msigcom, tmass.h_m, tmass.h_msigcom, tmass.ks_m, tmass.ks_msigcom
FROM gaiadr3.gaia_source AS gaia
JOIN gaiadr3.tmass_psc_xsc_best_neighbour AS xmatch USING (source_id)
JOIN gaiadr3.tmass_psc_xsc_join AS xjoin USING (clean_tmass_psc_xsc_oid)
JOIN gaiadr1.tmass_original_valid AS tmass ON xjoin.original_psc_source_id = tmass.designation
WHERE tmass.ext_key IS NULL
  AND gaia.l BETWEEN {{deg .LongMin}} AND {{deg .LongMax}}
  AND gaia.b BETWEEN {{deg .LatMin}} AND {{deg .LatMax}}
`)
