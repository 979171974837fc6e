package sqlinline

const QListImagePrices = `--sql 496b8815-2bfc-4a6c-8f7e-986c43d0ce40
select size_key, price::text, description, updated_at
from pricing_settings
order by size_key;
`

const QSelectImagePrice = `--sql 0bface0f-e02d-4bd9-87ab-14f93b68b7bb
select price::text
from pricing_settings
where size_key = $1::text;
`

const QUpdateImagePrice = `--sql 41ce5c4a-4503-43dc-8b74-1b32d6ebd148
update pricing_settings
set price = $2::numeric, updated_at = now()
where size_key = $1::text;
`

const QListSpeechRates = `--sql d35d7390-5eeb-403e-a3e9-7cb1b27eff44
select id, price::text, description, updated_at
from tts_pricing_settings
order by id;
`

const QUpdateSpeechRate = `--sql 311ca1c4-f2e0-4bce-8bc5-5ae38cec06c6
update tts_pricing_settings
set price = $2::numeric, updated_at = now()
where id = $1::int;
`
