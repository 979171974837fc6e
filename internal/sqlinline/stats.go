package sqlinline

const QAdminStats = `--sql 7f59fd3a-eca0-4bc0-bd9d-0f1e7349997c
select
  (select count(*) from user_balances)::int,
  (select coalesce(sum(balance), 0) from user_balances)::text,
  (select coalesce(sum(amount), 0) from transactions where type = 'debit' and status = 'completed')::text,
  (select count(*) from generations where created_at > now() - interval '24 hours')::int,
  (select count(*) from generations where charge_status = 'failed')::int;
`

const QGenerationCounts = `--sql 8b1ea569-aac9-4f9e-9f08-437e7dd0ceaf
select kind, status, count(*)::int
from generations
group by kind, status;
`
